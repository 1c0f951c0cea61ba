package main

import (
	"github.com/joho/godotenv"

	"github.com/shibinsp/ocrapillm/cmd"
)

func main() {
	// .env is optional; OCRAPILLM_* variables may come from the shell.
	_ = godotenv.Load()
	cmd.Execute()
}
