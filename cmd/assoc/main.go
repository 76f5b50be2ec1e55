// Command assoc builds, evaluates and watches associative array manifests.
package main

import "github.com/papapumpkin/assoc/cmd"

func main() {
	cmd.Execute()
}
