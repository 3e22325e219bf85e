package sim

import (
	"encoding/json"
	"os"

	"catisim/internal/study"
)

// FileWriter writes study rows to JSONL files, one file per row kind.
type FileWriter struct {
	caseFile  *os.File
	ringFile  *os.File
	powerFile *os.File
	stateFile *os.File
	caseEnc   *json.Encoder
	ringEnc   *json.Encoder
	powerEnc  *json.Encoder
	stateEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. ringPath, powerPath, or statePath may be empty to skip those logs.
func NewFileWriter(casePath, ringPath, powerPath, statePath string) (*FileWriter, error) {
	cf, err := os.Create(casePath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{caseFile: cf, caseEnc: json.NewEncoder(cf)}
	if ringPath != "" {
		rf, err := os.Create(ringPath)
		if err != nil {
			cf.Close()
			return nil, err
		}
		fw.ringFile = rf
		fw.ringEnc = json.NewEncoder(rf)
	}
	if powerPath != "" {
		pf, err := os.Create(powerPath)
		if err != nil {
			if fw.ringFile != nil {
				fw.ringFile.Close()
			}
			cf.Close()
			return nil, err
		}
		fw.powerFile = pf
		fw.powerEnc = json.NewEncoder(pf)
	}
	if statePath != "" {
		sf, err := os.Create(statePath)
		if err != nil {
			if fw.ringFile != nil {
				fw.ringFile.Close()
			}
			if fw.powerFile != nil {
				fw.powerFile.Close()
			}
			cf.Close()
			return nil, err
		}
		fw.stateFile = sf
		fw.stateEnc = json.NewEncoder(sf)
	}
	return fw, nil
}

// Write logs a single case row.
func (f *FileWriter) Write(row study.CaseRow) error {
	return f.caseEnc.Encode(row)
}

// WriteBatch logs multiple case rows.
func (f *FileWriter) WriteBatch(rows []study.CaseRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteRing logs a single ring summary row, if enabled.
func (f *FileWriter) WriteRing(row study.RingRow) error {
	if f.ringEnc == nil {
		return nil
	}
	return f.ringEnc.Encode(row)
}

// WriteRings logs multiple ring summary rows.
func (f *FileWriter) WriteRings(rows []study.RingRow) error {
	for _, r := range rows {
		if err := f.WriteRing(r); err != nil {
			return err
		}
	}
	return nil
}

// WritePower logs a single power sweep row, if enabled.
func (f *FileWriter) WritePower(row study.PowerRow) error {
	if f.powerEnc == nil {
		return nil
	}
	return f.powerEnc.Encode(row)
}

// WritePowers logs multiple power sweep rows.
func (f *FileWriter) WritePowers(rows []study.PowerRow) error {
	for _, r := range rows {
		if err := f.WritePower(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteState logs a run progress row, if enabled.
func (f *FileWriter) WriteState(row study.RunStateRow) error {
	if f.stateEnc == nil {
		return nil
	}
	return f.stateEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.caseFile != nil {
		if e := f.caseFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.ringFile != nil {
		if e := f.ringFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.powerFile != nil {
		if e := f.powerFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.stateFile != nil {
		if e := f.stateFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
