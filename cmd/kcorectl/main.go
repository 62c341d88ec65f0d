// Command kcorectl boots the kernel core on a simulated machine.
package main

func main() {
	execute()
}
