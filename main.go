package main

import (
	_ "github.com/joho/godotenv/autoload"

	"github.com/simonyos/rulefy/cmd"
)

func main() {
	cmd.Execute()
}
