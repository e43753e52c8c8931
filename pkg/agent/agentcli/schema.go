package agentcli

import (
	"encoding/hex"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-yaml"

	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
	"github.com/neuroplastio/mtouch-agent/pkg/uinput"
)

// ReadDescriptorFile loads a report descriptor dump, accepting both raw
// binary files and the usual textual hex dumps.
func ReadDescriptorFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if desc, ok := parseHexDescriptor(string(raw)); ok {
		return desc, nil
	}
	return raw, nil
}

// parseHexDescriptor accepts hex pairs separated by whitespace or commas,
// with optional 0x prefixes, or one continuous hex string.
func parseHexDescriptor(s string) ([]byte, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	if len(fields) == 0 {
		return nil, false
	}
	if len(fields) == 1 && len(fields[0]) > 4 {
		b, err := hex.DecodeString(strings.TrimPrefix(fields[0], "0x"))
		if err != nil {
			return nil, false
		}
		return b, true
	}
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		if len(f) != 2 {
			return nil, false
		}
		b, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, false
		}
		out = append(out, byte(b))
	}
	return out, true
}

type schemaDescription struct {
	Type              string             `yaml:"type"`
	ReportID          uint8              `yaml:"reportId"`
	InputSize         int                `yaml:"inputSize"`
	ContactMax        int                `yaml:"contactMax"`
	ContactsPerReport int                `yaml:"contactsPerReport"`
	Caps              []string           `yaml:"caps"`
	Axes              []axisDescription  `yaml:"axes"`
	Features          featureDescription `yaml:"features"`
}

type axisDescription struct {
	Code       string `yaml:"code"`
	Usage      string `yaml:"usage"`
	Minimum    int32  `yaml:"min"`
	Maximum    int32  `yaml:"max"`
	Resolution int32  `yaml:"resolution,omitempty"`
}

type featureDescription struct {
	ContactMax uint8 `yaml:"contactMaxReport"`
	InputMode  uint8 `yaml:"inputModeReport,omitempty"`
	Cert       uint8 `yaml:"certReport,omitempty"`
}

// describeSchema runs discovery on a raw descriptor and writes the schema as
// YAML. The axis rows mirror what the virtual output device is created with;
// the tip switch entry doubles as the slot axis.
func describeSchema(w io.Writer, desc []byte) error {
	schema, err := multitouch.Discover(desc)
	if err != nil {
		return err
	}
	out := schemaDescription{
		Type:              schema.Type.String(),
		ReportID:          schema.ReportID,
		InputSize:         schema.InputSize,
		ContactMax:        schema.ContactMax,
		ContactsPerReport: schema.ContactsPerReport(),
		Features: featureDescription{
			ContactMax: schema.ContactMaxRID,
			InputMode:  schema.InputModeRID,
			Cert:       schema.CertRID,
		},
	}
	for _, f := range schema.Caps.Fields() {
		out.Caps = append(out.Caps, f.String())
		code, ok := f.Code()
		if !ok {
			continue
		}
		b := schema.Bounds[f]
		out.Axes = append(out.Axes, axisDescription{
			Code:       uinput.AbsCodeName(code),
			Usage:      f.Usage().String(),
			Minimum:    b.Minimum,
			Maximum:    b.Maximum,
			Resolution: b.Resolution,
		})
	}
	return writeYAML(w, out)
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
