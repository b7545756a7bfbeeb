package util

import "fmt"

func MHzToString(hz int) string {
	return fmt.Sprintf("%0.4f MHz", float64(hz)/1e6)
}

func KHzToString(hz float64) string {
	return fmt.Sprintf("%.3f kHz", hz/1e3)
}
