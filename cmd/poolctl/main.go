// Command poolctl drives an Arena from the command line for manual
// inspection and quick throughput checks, the way hivectl drives a hive
// file.
package main

func main() {
	execute()
}
