package tui

import (
	"github.com/tomkat-cr/abstractgo/internal/classify"
	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/export"
)

type tab int

const (
	tabMetrics tab = iota
	tabConfusion
	tabPerformance
	tabDistribution
	tabAnalytics
	tabHistory
	tabExport
	tabClassify
)

var tabOrder = []tab{
	tabMetrics,
	tabConfusion,
	tabPerformance,
	tabDistribution,
	tabAnalytics,
	tabHistory,
	tabExport,
	tabClassify,
}

func (t tab) label() string {
	switch t {
	case tabMetrics:
		return "Metrics"
	case tabConfusion:
		return "Confusion"
	case tabPerformance:
		return "Performance"
	case tabDistribution:
		return "Distribution"
	case tabAnalytics:
		return "Analytics"
	case tabHistory:
		return "History"
	case tabExport:
		return "Export"
	case tabClassify:
		return "Classify"
	default:
		return ""
	}
}

// section maps a dashboard tab to the resource it renders.
func (t tab) section() (dashboard.Section, bool) {
	switch t {
	case tabMetrics:
		return dashboard.SectionMetrics, true
	case tabConfusion:
		return dashboard.SectionConfusionMatrix, true
	case tabPerformance:
		return dashboard.SectionPerformance, true
	case tabDistribution:
		return dashboard.SectionDistribution, true
	case tabAnalytics:
		return dashboard.SectionAnalytics, true
	case tabHistory:
		return dashboard.SectionHistory, true
	default:
		return "", false
	}
}

const heroTagline = "Medical abstract classification at a glance."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
)

type interactionMode int

const (
	modeNormal interactionMode = iota
	modeInsert
)

type classifyField int

const (
	fieldTitle classifyField = iota
	fieldAbstract
	fieldPath
)

var classifyFields = []classifyField{fieldTitle, fieldAbstract, fieldPath}

type sectionResultMsg struct {
	section dashboard.Section
	stale   bool
	err     error
}

type exportResultMsg struct {
	artifact export.Artifact
	location string
	err      error
}

type classifyResultMsg struct {
	result classify.Result
	err    error
}

type extractResultMsg struct {
	extraction classify.Extraction
	err        error
}
