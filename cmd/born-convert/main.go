// Command born-convert converts a trained model into the quantized .blite
// artifact bundled with the mobile app.
package main

import "github.com/born-ml/born-convert/internal/cli"

func main() {
	cli.Execute()
}
