package server

import (
	"github.com/jamesprial/ward/internal/settings"
	"github.com/jamesprial/ward/internal/system"
)

// Version is reported on the dashboard. Release builds set it with
// -ldflags "-X github.com/jamesprial/ward/internal/server.Version=v1.2.3".
var Version = "Developer mode"

// View names.
const (
	ViewSetup    = "setup"
	ViewIndex    = "index"
	ViewNotFound = "error/404"
	ViewInternal = "error/500"
)

// SetupPage tells the client to render the setup form.
type SetupPage struct {
	View string `json:"view"`
}

// DashboardPage is everything the dashboard view needs.
type DashboardPage struct {
	View            string         `json:"view"`
	Theme           settings.Theme `json:"theme"`
	ServerName      string         `json:"serverName"`
	EnableFog       bool           `json:"enableFog"`
	BackgroundColor string         `json:"backgroundColor"`
	Info            *system.Info   `json:"info"`
	Uptime          *system.Uptime `json:"uptime"`
	Version         string         `json:"version"`
}

// ErrorPage is rendered for unknown routes and internal failures.
type ErrorPage struct {
	View  string         `json:"view"`
	Theme settings.Theme `json:"theme"`
}

// ErrorBody is the JSON body of a failed API call.
type ErrorBody struct {
	Error string `json:"error"`
}
