/*
Copyright © 2026 finconcept contributors
*/
package main

import (
	"github.com/quantkb/finconcept/cmd"
	"github.com/quantkb/finconcept/internal/logger"
)

func main() {
	defer logger.HandlePanic()
	cmd.Execute()
}
