package infra

import (
	"fmt"
	"strings"
)

// ANSI color codes.
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
)

// PrintBanner displays the startup banner with the configured endpoints so a
// wrong environment is obvious before the first order.
func PrintBanner(cfg *Config) {
	// Unencrypted endpoints get a yellow banner.
	color := ColorGreen
	if strings.HasPrefix(cfg.Stream.URL, "ws://") || strings.HasPrefix(cfg.API.BaseURL, "http://") {
		color = ColorYellow
	}

	fmt.Println()
	fmt.Printf("%s===========================================================%s\n", color, ColorReset)
	fmt.Printf("%s  TradeSync %s%s\n", color, cfg.App.Version, ColorReset)
	fmt.Printf("%s  STREAM: %s%s\n", color, cfg.Stream.URL, ColorReset)
	fmt.Printf("%s  API:    %s%s\n", color, cfg.API.BaseURL, ColorReset)
	fmt.Printf("%s===========================================================%s\n", color, ColorReset)
	fmt.Println()
}
