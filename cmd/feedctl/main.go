// feedctl 在命令行里直接跑一次 pipeline, 不启动 HTTP 服务
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
