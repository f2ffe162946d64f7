//go:build js && wasm

package main

import (
	"context"
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-strip/analysis"
	"github.com/cwbudde/algo-strip/strip"
)

const maxBlock = 128

var (
	engine       *strip.Engine
	backend      *strip.OfflineBackend
	library      *strip.SampleLibrary
	spectrum     *analysis.Analyzer
	sampleRate   int
	left, right  [maxBlock]float64
	outputBuffer []float32
	waveform     []float64
)

func main() {
	c := make(chan struct{})

	js.Global().Set("stripInit", js.FuncOf(stripInit))
	js.Global().Set("stripLoadSample", js.FuncOf(stripLoadSample))
	js.Global().Set("stripSelectSource", js.FuncOf(stripSelectSource))
	js.Global().Set("stripPreview", js.FuncOf(stripPreview))
	js.Global().Set("stripStart", js.FuncOf(stripStart))
	js.Global().Set("stripStop", js.FuncOf(stripStop))
	js.Global().Set("stripSetInputGain", js.FuncOf(stripSetInputGain))
	js.Global().Set("stripSetSaturation", js.FuncOf(stripSetSaturation))
	js.Global().Set("stripSetFilters", js.FuncOf(stripSetFilters))
	js.Global().Set("stripSetDynamics", js.FuncOf(stripSetDynamics))
	js.Global().Set("stripSetGate", js.FuncOf(stripSetGate))
	js.Global().Set("stripSetEQBand", js.FuncOf(stripSetEQBand))
	js.Global().Set("stripBypassBand", js.FuncOf(stripBypassBand))
	js.Global().Set("stripSetMasterVolume", js.FuncOf(stripSetMasterVolume))
	js.Global().Set("stripProcessBlock", js.FuncOf(stripProcessBlock))
	js.Global().Set("stripTick", js.FuncOf(stripTick))
	js.Global().Set("stripPlayUISound", js.FuncOf(stripPlayUISound))
	js.Global().Set("stripGetSpectrum", js.FuncOf(stripGetSpectrum))
	js.Global().Set("stripGetMemoryBuffer", js.FuncOf(stripGetMemoryBuffer))

	println("WASM channel strip loaded")
	<-c
}

func stripInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	sampleRate = args[0].Int()
	backend = strip.NewOfflineBackend(sampleRate)
	library = strip.NewSampleLibrary(sampleRate, nil)
	// The host calls stripTick from its own timer.
	engine = strip.NewEngine(backend, library, nil, strip.WithControlPeriod(0))
	if err := engine.Initialize(context.Background()); err != nil {
		println("init failed:", err.Error())
		return nil
	}
	var err error
	spectrum, err = analysis.NewAnalyzer(analysis.DefaultSize)
	if err != nil {
		println("analyzer:", err.Error())
	}
	outputBuffer = make([]float32, maxBlock*2)
	engine.PlayUISound(strip.UISoundInit)
	println("Channel strip initialized at", sampleRate, "Hz")
	return nil
}

func parseKey(v js.Value) (strip.InstrumentKey, bool) {
	key, err := strip.ParseInstrumentKey(v.String())
	if err != nil {
		println(err.Error())
		return strip.InstrumentKey{}, false
	}
	return key, true
}

func stripLoadSample(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || engine == nil {
		return nil
	}
	key, ok := parseKey(args[0])
	if !ok {
		return nil
	}
	arrayBuffer := js.Global().Get("Uint8Array").New(args[1])
	length := arrayBuffer.Get("byteLength").Int()
	if length == 0 {
		println("sample data is empty")
		return nil
	}
	raw := make([]byte, length)
	js.CopyBytesToGo(raw, arrayBuffer)

	info, err := engine.AssignFileToInstrument(key, raw)
	if err != nil {
		println("load failed:", err.Error())
		return nil
	}
	return map[string]interface{}{
		"frames":     info.Frames,
		"channels":   info.Channels,
		"sampleRate": info.SampleRate,
	}
}

func stripSelectSource(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	if key, ok := parseKey(args[0]); ok {
		_ = engine.SetActiveSource(key)
	}
	return nil
}

func stripPreview(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	if key, ok := parseKey(args[0]); ok {
		engine.Preview(key)
	}
	return nil
}

func stripStart(this js.Value, args []js.Value) interface{} {
	if engine == nil {
		return nil
	}
	if err := engine.Start(context.Background()); err != nil {
		println("start failed:", err.Error())
	}
	return nil
}

func stripStop(this js.Value, args []js.Value) interface{} {
	if engine != nil {
		engine.Stop()
	}
	return nil
}

func stripSetInputGain(this js.Value, args []js.Value) interface{} {
	if len(args) >= 1 && engine != nil {
		engine.SetInputGain(args[0].Float())
	}
	return nil
}

func stripSetSaturation(this js.Value, args []js.Value) interface{} {
	if len(args) >= 1 && engine != nil {
		engine.SetSaturation(args[0].Float())
	}
	return nil
}

func stripSetFilters(this js.Value, args []js.Value) interface{} {
	if len(args) >= 2 && engine != nil {
		engine.SetFilters(args[0].Float(), args[1].Float())
	}
	return nil
}

// stripSetDynamics(ratio, thresholdDB, attackMs, releaseMs, dynamicsIn, compIn, expIn)
func stripSetDynamics(this js.Value, args []js.Value) interface{} {
	if len(args) < 7 || engine == nil {
		return nil
	}
	engine.SetDynamics(strip.CompressorConfig{
		Ratio:       args[0].Float(),
		ThresholdDB: args[1].Float(),
		AttackMs:    args[2].Float(),
		ReleaseMs:   args[3].Float(),
	}, strip.Switches{
		Dynamics:   args[4].Bool(),
		Compressor: args[5].Bool(),
		Expander:   args[6].Bool(),
	})
	return nil
}

// stripSetGate(thresholdDB, rangeDB, releaseMs)
func stripSetGate(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 || engine == nil {
		return nil
	}
	engine.SetGate(strip.GateConfig{
		ThresholdDB: args[0].Float(),
		RangeDB:     args[1].Float(),
		ReleaseMs:   args[2].Float(),
		Enabled:     true,
	})
	return nil
}

// stripSetEQBand(band, freqHz, gainDB, q, bell)
func stripSetEQBand(this js.Value, args []js.Value) interface{} {
	if len(args) < 5 || engine == nil {
		return nil
	}
	band, err := strip.ParseBand(args[0].String())
	if err != nil {
		println(err.Error())
		return nil
	}
	engine.SetEQBand(band, args[1].Float(), args[2].Float(), args[3].Float(), args[4].Bool())
	return nil
}

func stripBypassBand(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || engine == nil {
		return nil
	}
	band, err := strip.ParseBand(args[0].String())
	if err != nil {
		println(err.Error())
		return nil
	}
	engine.BypassBand(band, args[1].Bool())
	return nil
}

func stripSetMasterVolume(this js.Value, args []js.Value) interface{} {
	if len(args) >= 1 && engine != nil {
		engine.SetMasterVolume(args[0].Float())
	}
	return nil
}

func stripProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return 0
	}
	numFrames := min(args[0].Int(), maxBlock)

	backend.PullInto(left[:numFrames], right[:numFrames])
	for i := 0; i < numFrames; i++ {
		outputBuffer[2*i] = float32(left[i])
		outputBuffer[2*i+1] = float32(right[i])
	}

	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func stripTick(this js.Value, args []js.Value) interface{} {
	if engine == nil {
		return nil
	}
	snap := engine.Tick()
	return map[string]interface{}{
		"left":   snap.LeftRMS,
		"right":  snap.RightRMS,
		"compGR": snap.CompressorGainReductionDB,
		"gateGR": snap.GateGainReductionDB,
	}
}

// stripGetSpectrum(bands) returns bands log-spaced 20 Hz..20 kHz, 0..1.
func stripGetSpectrum(this js.Value, args []js.Value) interface{} {
	if engine == nil || spectrum == nil {
		return nil
	}
	n := 31
	if len(args) >= 1 {
		n = args[0].Int()
	}
	waveform = engine.Waveform(waveform)
	db := spectrum.Process(waveform)
	bands := spectrum.Bands(db, sampleRate, n, 20, 20000)
	out := make([]interface{}, len(bands))
	for i, v := range bands {
		out[i] = v
	}
	return out
}

func stripGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}

func stripPlayUISound(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	sound := strip.UISoundInit
	if args[0].String() == "save" {
		sound = strip.UISoundSave
	}
	engine.PlayUISound(sound)
	return nil
}
