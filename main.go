package main

import "github.com/sagechat/sage/cmd"

func main() {
	cmd.Execute()
}
