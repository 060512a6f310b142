package main

import "github.com/samgrcn/WhatsApp-AI/cmd"

func main() {
	cmd.Execute()
}
