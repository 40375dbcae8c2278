package main

import "github.com/spring-cloud/spring-cloud-contract-sub001/internal/cli"

func main() {
	cli.Execute()
}
