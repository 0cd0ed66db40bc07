package main

import (
	"mailbox-monitor-go/internal/app"
)

func main() {
	app.Execute()
}
