package main

import (
	cmd "github.com/atelier-ml/atelier/cmd/atelier"
)

func main() {
	cmd.Execute()
}
