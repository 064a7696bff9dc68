package main

import "github.com/lu-zhengda/mailsession/internal/cli"

func main() {
	cli.Execute()
}
