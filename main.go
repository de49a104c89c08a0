package main

import "github.com/campuseats/menuscraper/cmd"

func main() {
	cmd.Execute()
}
