package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cwbudde/algo-strip/strip"
)

const (
	meterFloorDB = -60.0
	meterWidth   = 40
	grMaxDB      = 24.0
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	onStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	offStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#888888")).
			Padding(0, 1)
)

var sparks = []rune("▁▂▃▄▅▆▇█")

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Channel Strip Monitor"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(m.engine.PlaybackState().String()))
	b.WriteString("\n\n")

	var meters strings.Builder
	meters.WriteString(renderMeter("L", toDB(m.levels.LeftRMS), m.peakDB[0]) + "\n")
	meters.WriteString(renderMeter("R", toDB(m.levels.RightRMS), m.peakDB[1]) + "\n")
	meters.WriteString(renderGR("COMP", m.levels.CompressorGainReductionDB) + "\n")
	meters.WriteString(renderGR("GATE", m.levels.GateGainReductionDB) + "\n")
	meters.WriteString(renderSpectrum(m.bands))
	b.WriteString(boxStyle.Render(meters.String()))
	b.WriteString("\n")

	b.WriteString(renderPanel(m.state))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errStyle.Render(m.err.Error()))
	case m.status != "":
		b.WriteString(dimStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("space play/stop · tab source · ↑/↓ input · ←/→ fader · s drive · " +
		"e eq · d dyn · c comp · x exp · b bypass · p power · w save · q quit"))
	b.WriteString("\n")
	return b.String()
}

func renderMeter(label string, db, peakDB float64) string {
	filled := int((db - meterFloorDB) / -meterFloorDB * meterWidth)
	filled = min(max(filled, 0), meterWidth)
	peak := int((peakDB - meterFloorDB) / -meterFloorDB * meterWidth)
	peak = min(max(peak, 0), meterWidth-1)

	cells := []rune(strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled))
	if peak >= filled {
		cells[peak] = '│'
	}
	return fmt.Sprintf("%-4s %s %6.1f dB", label, string(cells), db)
}

func renderGR(label string, db float64) string {
	filled := int(db / grMaxDB * meterWidth)
	filled = min(max(filled, 0), meterWidth)
	bar := strings.Repeat(" ", meterWidth-filled) + strings.Repeat("▓", filled)
	return fmt.Sprintf("%-4s %s %6.1f dB", label, bar, -db)
}

func renderSpectrum(bands []float64) string {
	if len(bands) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("SPEC ")
	for _, v := range bands {
		i := int(v * float64(len(sparks)-1))
		i = min(max(i, 0), len(sparks)-1)
		b.WriteRune(sparks[i])
	}
	return b.String()
}

func renderPanel(s strip.ChannelStripState) string {
	sw := func(name string, on bool) string {
		if on {
			return onStyle.Render("[" + name + "]")
		}
		return offStyle.Render(" " + name + " ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "IN %+5.1f dB  DRIVE %.1f  HPF %4.0f Hz  LPF %5.0f Hz  OUT %+5.1f dB  FADER %.2f\n",
		s.InputGainDB, s.Saturation, s.HPFHz, s.LPFHz, s.OutputGainDB, s.Fader)
	fmt.Fprintf(&b, "COMP %.1f:1 @ %.0f dB  GATE %.0f dB / %.0f dB\n",
		s.Compressor.Ratio, s.Compressor.ThresholdDB, s.Gate.ThresholdDB, s.Gate.RangeDB)
	for _, band := range strip.Bands() {
		eq := s.EQ[band]
		shape := "bell"
		if !eq.Bell {
			shape = "shelf"
		}
		fmt.Fprintf(&b, "%-3s %5.0f Hz %+5.1f dB Q%.1f %s  ", band, eq.FreqHz, eq.GainDB, eq.Q, shape)
	}
	b.WriteString("\n")
	b.WriteString(strings.Join([]string{
		sw("POWER", s.Power), sw("EQ", s.EQIn), sw("DYN", s.DynamicsIn),
		sw("COMP", s.CompressorIn), sw("EXP", s.ExpanderIn), sw("BYPASS", s.MasterBypass),
	}, " "))
	return b.String()
}
