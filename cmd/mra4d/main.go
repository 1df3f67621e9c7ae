// cmd/mra4d/main.go
package main

import (
	"os"

	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/cmd/mra4d/app"
)

func main() {
	defer klog.Flush()

	if err := app.NewCommand().Execute(); err != nil {
		klog.Flush()
		os.Exit(1)
	}
}
