// telemetry-dump connects to the robot's real-time interface only and
// prints decoded state snapshots. Useful for verifying the frame layout
// against a live controller.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-urjog/internal/log"
	"github.com/teslashibe/go-urjog/pkg/telemetry"
)

func main() {
	host := flag.String("robot", "192.168.1.100", "Robot IP address")
	port := flag.Int("port", 30003, "Real-time interface port")
	interval := flag.Duration("interval", time.Second, "Print interval")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	ch, err := telemetry.New(telemetry.Config{
		Host:    *host,
		Port:    *port,
		Timeout: time.Second,
		Layout:  telemetry.DefaultLayout(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: %v\n", err)
		os.Exit(1)
	}
	if err := ch.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer ch.Disconnect()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			return
		case <-ticker.C:
			st := ch.GetState()
			fmt.Printf("msgs=%d freq=%.1fHz pose=[%.4f %.4f %.4f %.4f %.4f %.4f] joints=[%.4f %.4f %.4f %.4f %.4f %.4f] estop=%v pstop=%v\n",
				st.MessagesReceived, st.MessageFrequency,
				st.TCPPose[0], st.TCPPose[1], st.TCPPose[2],
				st.TCPPose[3], st.TCPPose[4], st.TCPPose[5],
				st.JointAngles[0], st.JointAngles[1], st.JointAngles[2],
				st.JointAngles[3], st.JointAngles[4], st.JointAngles[5],
				st.EmergencyStopped, st.ProtectiveStopped)
		}
	}
}
