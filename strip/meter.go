package strip

// LevelsSnapshot is one metering reading. It is a value; poll again for a
// newer one.
type LevelsSnapshot struct {
	LeftRMS                   float64
	RightRMS                  float64
	CompressorGainReductionDB float64
	GateGainReductionDB       float64
}

// MeteringService reads the post-fader taps and the dynamics read-backs.
// It applies no ballistics; that is the display's job.
type MeteringService struct {
	graph *SignalGraph
	gate  *GateController
}

// NewMeteringService creates a meter over graph. gate may be nil, in which
// case gate reduction reads as 0.
func NewMeteringService(graph *SignalGraph, gate *GateController) *MeteringService {
	return &MeteringService{graph: graph, gate: gate}
}

// Poll returns a fresh snapshot.
func (m *MeteringService) Poll() LevelsSnapshot {
	left, right := m.graph.MeterTaps()
	snap := LevelsSnapshot{
		LeftRMS:  left.RMS(),
		RightRMS: right.RMS(),
	}
	if sw := m.graph.Switches(); sw.Dynamics && sw.Compressor {
		snap.CompressorGainReductionDB = m.graph.CompressorReductionDB()
	}
	if m.gate != nil {
		snap.GateGainReductionDB = m.gate.GainReductionDB()
	}
	return snap
}
