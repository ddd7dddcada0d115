package dicomio

import (
	"context"
	"fmt"
	"log"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/araddon/dateparse"
	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/ctperfusion/volume"
)

// Study is every parsed DICOM image found beneath one input path. It is read
// once and then shared read-only between parameter series.
type Study struct {
	Source  string
	Files   []*File
	Skipped int
}

// LoadStudy reads and parses every DICOM beneath studyPath, parsing up to
// workers files at once. Files that fail to parse are logged and skipped.
func LoadStudy(ctx context.Context, studyPath string, client *storage.Client, workers int) (*Study, error) {
	entries, err := ReadEntries(ctx, studyPath, client)
	if err != nil {
		return nil, err
	}

	return ParseEntries(studyPath, entries, workers)
}

// ParseEntries parses the DICOM entries of a study that is already in memory.
func ParseEntries(source string, entries []Entry, workers int) (*Study, error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	var candidates []Entry
	for _, e := range entries {
		if IsDICOM(e) {
			candidates = append(candidates, e)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })

	parsed := make([]*File, len(candidates))
	sem := make(chan bool, workers)
	var wg sync.WaitGroup
	for i, e := range candidates {
		wg.Add(1)
		sem <- true
		go func(i int, e Entry) {
			defer func() {
				<-sem
				wg.Done()
			}()

			f, err := ParseBytes(e.Name, e.Data)
			if err != nil {
				log.Println("Ignoring error and continuing:", err)
				return
			}
			parsed[i] = f
		}(i, e)
	}
	wg.Wait()

	study := &Study{Source: source}
	for _, f := range parsed {
		if f == nil {
			study.Skipped++
			continue
		}
		study.Files = append(study.Files, f)
	}

	if len(study.Files) == 0 {
		return nil, ctperfusion.NewInputDataError("", source, "found no readable DICOM images among %d files", len(entries))
	}

	log.Printf("Parsed %d DICOM images from %s (%d skipped)\n", len(study.Files), source, study.Skipped)

	return study, nil
}

// Slices returns the normalized slice of every image, in file-name order.
func (s *Study) Slices() []volume.Slice {
	out := make([]volume.Slice, 0, len(s.Files))
	for _, f := range s.Files {
		out = append(out, f.Slice)
	}
	return out
}

// PatientInfo summarizes who and when, from the first image that says so.
type PatientInfo struct {
	DicomDir     string `json:"dicom_dir"`
	PatientName  string `json:"patient_name,omitempty"`
	PatientID    string `json:"patient_id,omitempty"`
	StudyDate    string `json:"study_date,omitempty"`
	StudyDateISO string `json:"study_date_iso,omitempty"`
	Modality     string `json:"modality,omitempty"`
}

func (s *Study) PatientInfo() PatientInfo {
	out := PatientInfo{DicomDir: s.Source}

	for _, f := range s.Files {
		if out.PatientName == "" {
			out.PatientName = f.Meta.PatientName
		}
		if out.PatientID == "" {
			out.PatientID = f.Meta.PatientID
		}
		if out.StudyDate == "" {
			out.StudyDate = f.Meta.StudyDate
		}
		if out.Modality == "" {
			out.Modality = f.Meta.Modality
		}
	}

	if out.StudyDate != "" {
		if parsed, err := ParsedDate(out.StudyDate); err == nil {
			out.StudyDateISO = parsed.Format("2006-01-02")
		}
	}

	return out
}

// ParsedDate parses the dates found in DICOM headers, which are usually but
// not always YYYYMMDD.
func ParsedDate(date string) (time.Time, error) {
	return dateparse.ParseAny(date)
}

// SeriesSummary describes one series of a study.
type SeriesSummary struct {
	Description     string
	Number          string
	Images          int
	Rows, Cols      int
	Encoding        volume.Encoding
	PixelSpacing    [2]float64
	SliceThickness  float64
	PositionRangeMM [2]float64
	HasPosition     bool
}

// Series groups the study by series description and number, sorted by number
// then description.
func (s *Study) Series() []SeriesSummary {
	type key struct{ desc, number string }

	byKey := make(map[key]*SeriesSummary)
	var keys []key
	for _, f := range s.Files {
		k := key{f.Meta.SeriesDescription, f.Meta.SeriesNumber}
		sum, exists := byKey[k]
		if !exists {
			sum = &SeriesSummary{
				Description:     k.desc,
				Number:          k.number,
				Rows:            f.Slice.Height,
				Cols:            f.Slice.Width,
				Encoding:        f.Slice.Encoding(),
				PixelSpacing:    f.Slice.PixelSpacing,
				SliceThickness:  f.Slice.SliceThickness,
				PositionRangeMM: [2]float64{math.Inf(1), math.Inf(-1)},
			}
			byKey[k] = sum
			keys = append(keys, k)
		}

		sum.Images++
		if f.Slice.HasPosition {
			sum.HasPosition = true
			sum.PositionRangeMM[0] = math.Min(sum.PositionRangeMM[0], f.Slice.Position)
			sum.PositionRangeMM[1] = math.Max(sum.PositionRangeMM[1], f.Slice.Position)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].number != keys[j].number {
			return seriesNumberLess(keys[i].number, keys[j].number)
		}
		return keys[i].desc < keys[j].desc
	})

	out := make([]SeriesSummary, 0, len(keys))
	for _, k := range keys {
		sum := *byKey[k]
		if !sum.HasPosition {
			sum.PositionRangeMM = [2]float64{}
		}
		out = append(out, sum)
	}
	return out
}

// seriesNumberLess sorts numerically when both are integers.
func seriesNumberLess(a, b string) bool {
	var ai, bi int
	_, errA := fmt.Sscanf(a, "%d", &ai)
	_, errB := fmt.Sscanf(b, "%d", &bi)
	if errA == nil && errB == nil && ai != bi {
		return ai < bi
	}
	return strings.Compare(a, b) < 0
}
