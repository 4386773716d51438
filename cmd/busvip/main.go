// Command busvip runs the self-checking bus testbench.
package main

func main() {
	Execute()
}
