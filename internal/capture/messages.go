package capture

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var messagesYAML []byte

// Messages holds every text the session shows to the user.
type Messages struct {
	Face     FaceMessages     `yaml:"face"`
	Camera   CameraMessages   `yaml:"camera"`
	Location LocationMessages `yaml:"location"`
	Hints    HintMessages     `yaml:"hints"`
}

type FaceMessages struct {
	ModelLoading    string `yaml:"model_loading"`
	NoFace          string `yaml:"no_face"`
	MultipleFaces   string `yaml:"multiple_faces"`
	SingleFace      string `yaml:"single_face"`
	ModelLoadFailed string `yaml:"model_load_failed"`
}

type CameraMessages struct {
	PermissionDenied string `yaml:"permission_denied"`
	NotFound         string `yaml:"not_found"`
}

type LocationMessages struct {
	GPSLocked   string `yaml:"gps_locked"`
	GPSFailed   string `yaml:"gps_failed"`
	IPFailed    string `yaml:"ip_failed"`
	Unavailable string `yaml:"unavailable"`
	ManualHint  string `yaml:"manual_hint"`
}

type HintMessages struct {
	EnableCamera  string `yaml:"enable_camera"`
	ConnectCamera string `yaml:"connect_camera"`
	ReloadModel   string `yaml:"reload_model"`
	Reposition    string `yaml:"reposition"`
	WaitModel     string `yaml:"wait_model"`
	WaitLocation  string `yaml:"wait_location"`
	RetryLocation string `yaml:"retry_location"`
	AdjustPin     string `yaml:"adjust_pin"`
	RetrySubmit   string `yaml:"retry_submit"`
	Submitting    string `yaml:"submitting"`
	Ready         string `yaml:"ready"`
}

// DefaultMessages returns the embedded message set.
func DefaultMessages() Messages {
	var m Messages
	if err := yaml.Unmarshal(messagesYAML, &m); err != nil {
		// Embedded file, only fails on a broken build.
		panic("failed to unmarshal embedded messages.yaml: " + err.Error())
	}
	return m
}

// LoadMessages reads a message file and fills anything it leaves empty from
// the embedded defaults. An empty path returns the defaults.
func LoadMessages(path string) (Messages, error) {
	m := DefaultMessages()
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("reading messages file: %w", err)
	}
	// Unmarshal over the defaults so partial files only override what they set.
	if err := yaml.Unmarshal(data, &m); err != nil {
		return DefaultMessages(), fmt.Errorf("parsing messages file: %w", err)
	}
	return m, nil
}

func (m Messages) signal(kind SignalKind) FaceSignal {
	var reason string
	switch kind {
	case SignalModelLoading:
		reason = m.Face.ModelLoading
	case SignalNoFace:
		reason = m.Face.NoFace
	case SignalMultipleFaces:
		reason = m.Face.MultipleFaces
	case SignalSingleFace:
		reason = m.Face.SingleFace
	}
	return FaceSignal{Kind: kind, Reason: reason}
}

// SignalForCount maps a sample's face count to a signal.
func (m Messages) SignalForCount(n int) FaceSignal {
	switch {
	case n == 0:
		return m.signal(SignalNoFace)
	case n >= 2:
		return m.signal(SignalMultipleFaces)
	default:
		return m.signal(SignalSingleFace)
	}
}
