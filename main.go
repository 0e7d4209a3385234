package main

import (
	"github.com/joho/godotenv"

	"github.com/KaramelBytes/rfm-dashboard/cmd"
)

func main() {
	// A .env file is optional; RFMDASH_* variables may also come from the environment.
	_ = godotenv.Load()
	cmd.Execute()
}
