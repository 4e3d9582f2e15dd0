package main

//go:generate swag init -g cmd/engine/main.go -o docs

// @title           Planogram Engine API
// @version         0.1.0
// @description     Layout revenue prediction, risk analysis, and A/B experimentation for vending fleets.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
