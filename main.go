// BlogBook turns a chain of Blogger or WordPress posts into a single EPUB.
package main

import "github.com/gaurav-prasanna/blogbook/cmd"

func main() {
	cmd.Execute()
}
