package main

import "time"

// Flag structs to decouple cobra from logic for testing.

type RunFlags struct {
	ConfigPath     string
	Processes      []string
	MatchMode      string
	WatchPIDFile   string
	CheckCommand   string
	TimeoutMinutes float64
	Interval       time.Duration
	APIKey         string
	APIBase        string
	Instance       string
	WorkDir        string
	CommandDir     string
	StatusDir      string
	Listen         string
	MetricsListen  string
	HistoryDSN     string
	Daemonize      bool
	PidFile        string
	LogFile        string
}

type ControlFlags struct {
	ConfigPath string
	WorkDir    string
	CommandDir string
}

type StatusFlags struct {
	ConfigPath string
	WorkDir    string
	StatusDir  string
	Follow     bool
}

type InstancesFlags struct {
	ConfigPath string
	APIKey     string
	APIBase    string
	Instance   string
}
