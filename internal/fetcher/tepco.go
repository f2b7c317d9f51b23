package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/hazardmap/powergrid/internal/model"
)

// TEPCOUtility is the utility name stamped on TEPCO records.
const TEPCOUtility = "TEPCO"

const tepcoURLPattern = "https://www.tepco.co.jp/pg/consignment/system/csv_new/csv_akiyouryou_%s.zip"

// Region is one TEPCO publication area.
type Region struct {
	ID   string
	Name string
	URL  string
}

var tepcoRegions = []Region{
	{ID: "kikan", Name: "基幹系統（275kV以上）"},
	{ID: "tochigi", Name: "栃木県"},
	{ID: "gunma", Name: "群馬県"},
	{ID: "ibaraki", Name: "茨城県"},
	{ID: "saitama", Name: "埼玉県"},
	{ID: "chiba", Name: "千葉県"},
	{ID: "tokyo23", Name: "東京都[23区]"},
	{ID: "tama", Name: "東京都[多摩地区]"},
	{ID: "kanagawa", Name: "神奈川県"},
	{ID: "yamanashi", Name: "山梨県"},
	{ID: "shizuoka", Name: "静岡県[富士川以東]"},
	{ID: "fukushima", Name: "福島県[一部]"},
	{ID: "nagano", Name: "長野県[一部]"},
	{ID: "niigata", Name: "新潟県[一部]"},
}

// TEPCORegions returns the named regions in publication order, or all of
// them when ids is empty. Unknown ids are an error.
func TEPCORegions(ids []string) ([]Region, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Region
	for _, r := range tepcoRegions {
		if len(ids) > 0 && !want[r.ID] {
			continue
		}
		r.URL = fmt.Sprintf(tepcoURLPattern, r.ID)
		out = append(out, r)
		delete(want, r.ID)
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for id := range want {
			unknown = append(unknown, id)
		}
		sort.Strings(unknown)
		return nil, eris.Errorf("fetcher: unknown TEPCO regions %v", unknown)
	}
	return out, nil
}

// TEPCORegionSource downloads one region's zipped CSV.
type TEPCORegionSource struct {
	Region  Region
	Fetcher Fetcher
	// TempDir holds the downloaded archive while it is unpacked. Empty
	// means the system temp directory.
	TempDir string
	Clock   clockwork.Clock
}

// NewTEPCOSources builds one source per region sharing f.
func NewTEPCOSources(regions []Region, f Fetcher, tempDir string, clock clockwork.Clock) []Source {
	out := make([]Source, 0, len(regions))
	for _, r := range regions {
		out = append(out, &TEPCORegionSource{Region: r, Fetcher: f, TempDir: tempDir, Clock: clock})
	}
	return out
}

// Name implements Source.
func (s *TEPCORegionSource) Name() string { return "tepco_" + s.Region.ID }

// Label implements Source.
func (s *TEPCORegionSource) Label() string { return s.Region.Name }

// FetchRaw implements Source.
func (s *TEPCORegionSource) FetchRaw(ctx context.Context) (RawData, error) {
	dir, err := os.MkdirTemp(s.TempDir, "tepco-"+s.Region.ID+"-*")
	if err != nil {
		return RawData{}, eris.Wrap(err, "fetcher: create temp dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	zipPath := filepath.Join(dir, "archive.zip")
	if _, err := s.Fetcher.DownloadToFile(ctx, s.Region.URL, zipPath); err != nil {
		return RawData{}, eris.Wrapf(err, "fetcher: download %s", s.Region.ID)
	}
	name, data, err := ReadZIPTable(zipPath, ".csv")
	if err != nil {
		return RawData{}, eris.Wrapf(err, "fetcher: unpack %s", s.Region.ID)
	}
	return RawData{Format: FormatCSV, Data: data, Origin: s.Region.URL + "#" + name}, nil
}

// Parse implements Source.
func (s *TEPCORegionSource) Parse(ctx context.Context, raw RawData) ([]model.CapacityRecord, error) {
	return ParseRaw(ctx, raw, TableSpec{
		Utility:  TEPCOUtility,
		Region:   s.Region.ID,
		IDPrefix: "tepco_" + s.Region.ID,
		Today:    today(s.Clock),
	})
}

func today(clock clockwork.Clock) string {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return clock.Now().Format("2006-01-02")
}
