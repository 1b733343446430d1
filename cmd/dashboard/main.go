// dashboard is an interactive REPL against the robot's dashboard port.
// Type protocol commands directly; responses print as received.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/teslashibe/go-urjog/internal/log"
	"github.com/teslashibe/go-urjog/pkg/dashboard"
)

func main() {
	host := flag.String("robot", "192.168.1.100", "Robot IP address")
	port := flag.Int("port", 29999, "Dashboard port")
	flag.Parse()

	log.Init("warn")

	client, err := dashboard.New(dashboard.Config{
		Host:    *host,
		Port:    *port,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
		os.Exit(1)
	}
	if err := client.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Disconnect()

	fmt.Printf("connected to %s:%d, type commands (exit to quit)\n", *host, *port)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" {
			return
		}

		response, err := client.Request(line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			if !client.IsConnected() {
				return
			}
			continue
		}
		fmt.Println(response)
	}
}
