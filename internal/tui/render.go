package tui

import (
	"fmt"
	"strings"

	"trendcast/internal/advisor"
	"trendcast/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	queryStyle   = lipgloss.NewStyle().Bold(true)
	upStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	downStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	neutralStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

func directionStyle(d domain.Direction) lipgloss.Style {
	switch d {
	case domain.DirectionUp:
		return upStyle
	case domain.DirectionDown:
		return downStyle
	}
	return neutralStyle
}

func renderQuote(q *domain.Quote) string {
	name := q.Name
	if name == "" {
		name = q.Symbol
	}
	change := fmt.Sprintf("%+.2f (%+.2f%%)", q.Change(), q.ChangePct())
	switch {
	case q.Change() > 0:
		change = upStyle.Render(change)
	case q.Change() < 0:
		change = downStyle.Render(change)
	}
	return fmt.Sprintf("%s %s\n  $%.2f %s\n  range $%.2f - $%.2f  vol %s  cap %s",
		titleStyle.Render(q.Symbol), dimStyle.Render(name),
		q.Price, change,
		q.DayLow, q.DayHigh, advisor.FormatVolume(q.Volume), advisor.FormatMarketCap(q.MarketCap))
}

func renderForecast(f domain.Forecast) string {
	if f.IsError() {
		return errorStyle.Render("forecast: " + f.Error)
	}
	confidence := fmt.Sprintf("%.0f%%", f.Confidence*100)
	if f.ConfidenceScale == domain.ScalePercent {
		confidence = fmt.Sprintf("%.1f%%", f.Confidence)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "  forecast %s confidence %s %s\n",
		directionStyle(f.Direction).Render(string(f.Direction)), confidence, dimStyle.Render("("+string(f.Stage)+")"))
	fmt.Fprintf(&sb, "  next $%.2f (%+.2f%%)", f.PredictedPrice, f.PredictedChangePct)
	for _, factor := range f.Factors {
		sb.WriteString("\n  - " + factor)
	}
	return sb.String()
}

func renderRecommendation(rec advisor.Recommendation) string {
	action := neutralStyle
	switch rec.Action {
	case advisor.ActionBuy:
		action = upStyle
	case advisor.ActionSell:
		action = downStyle
	}
	return fmt.Sprintf("%s @ $%.2f %s\n  %s",
		titleStyle.Render(rec.Symbol), rec.Price, action.Render(rec.Action), rec.Text)
}
