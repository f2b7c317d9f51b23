package dataset

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/hazardmap/powergrid/internal/model"
)

// capacityEnvelope is the object form some exports use instead of a bare
// array.
type capacityEnvelope struct {
	Entries []model.CapacityRecord `json:"entries"`
}

// LoadCapacity reads a capacity file: either a JSON array of records or an
// object with an "entries" array. Records without an id or name are a data
// integrity error.
func LoadCapacity(path string) ([]model.CapacityRecord, error) {
	data, err := readFile(path, "capacity")
	if err != nil {
		return nil, err
	}
	records, err := decodeCapacity(data)
	if err != nil {
		return nil, malformed(err, "capacity", path)
	}
	for i, r := range records {
		if r.ID == "" && r.Name == "" && r.NameOriginal == "" {
			return nil, eris.Wrapf(ErrDataIntegrity, "dataset: capacity %s entry %d has neither id nor name", path, i)
		}
	}
	return records, nil
}

// LoadCapacityOptional is LoadCapacity for inputs that may be absent, such
// as a previous snapshot. A missing file yields no records.
func LoadCapacityOptional(path string) ([]model.CapacityRecord, error) {
	if !Exists(path) {
		return nil, nil
	}
	return LoadCapacity(path)
}

func decodeCapacity(data []byte) ([]model.CapacityRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, eris.New("empty document")
	}
	if trimmed[0] == '[' {
		var records []model.CapacityRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var env capacityEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	if env.Entries == nil {
		return nil, eris.New(`object has no "entries" array`)
	}
	return env.Entries, nil
}

// WriteCapacity writes records as a JSON array.
func WriteCapacity(path string, records []model.CapacityRecord) error {
	if records == nil {
		records = []model.CapacityRecord{}
	}
	return WriteJSON(path, records)
}
