package storage

import (
	"encoding/json"
	"errors"

	"goalreach/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps new records.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.SolveRun) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.SolveRun, error) {
	var run model.SolveRun
	if err := json.Unmarshal(data, &run); err != nil {
		return model.SolveRun{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.SolveRun{}, err
	}
	return run, nil
}

func EncodeSolutions(records []model.SolutionRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeSolutions(data []byte) ([]model.SolutionRecord, error) {
	var records []model.SolutionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
