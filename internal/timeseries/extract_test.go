package timeseries

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

const dayAheadDocument = `<?xml version="1.0" encoding="utf-8"?>
<Publication_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-3:publicationdocument:7:3">
  <mRID>bf4445f7e6e04c849b7e0830b906fbde</mRID>
  <revisionNumber>1</revisionNumber>
  <type>A44</type>
  <createdDateTime>2025-05-17T21:13:31Z</createdDateTime>
  <period.timeInterval>
    <start>2023-12-31T23:00Z</start>
    <end>2024-01-01T23:00Z</end>
  </period.timeInterval>
  <TimeSeries>
    <mRID>1</mRID>
    <businessType>A62</businessType>
    <in_Domain.mRID codingScheme="A01">10YFR-RTE------C</in_Domain.mRID>
    <currency_Unit.name>EUR</currency_Unit.name>
    <price_Measure_Unit.name>MWH</price_Measure_Unit.name>
    <curveType>A03</curveType>
    <Period>
      <timeInterval>
        <start>2023-12-31T23:00Z</start>
        <end>2024-01-01T23:00Z</end>
      </timeInterval>
      <resolution>PT60M</resolution>
      <Point>
        <position>1</position>
        <price.amount>104.98</price.amount>
      </Point>
      <Point>
        <position>2</position>
        <price.amount>105.98</price.amount>
      </Point>
    </Period>
  </TimeSeries>
</Publication_MarketDocument>`

func TestExtractDayAheadDocument(t *testing.T) {
	rows, err := Extract(dayAheadDocument, "price.amount", "Period")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	timestamps := rows.Timestamps("PT60M")
	values := rows.Values("PT60M")
	if len(timestamps) != 2 || len(values) != 2 {
		t.Fatalf("expected 2 points, got %d timestamps and %d values (keys: %v)", len(timestamps), len(values), rows.Resolutions())
	}

	wantFirst := time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)
	wantSecond := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !timestamps[0].Equal(wantFirst) {
		t.Errorf("first timestamp = %v, want %v", timestamps[0], wantFirst)
	}
	if !timestamps[1].Equal(wantSecond) {
		t.Errorf("second timestamp = %v, want %v", timestamps[1], wantSecond)
	}
	if values[0] != 104.98 || values[1] != 105.98 {
		t.Errorf("values = %v, want [104.98 105.98]", values)
	}
}

func TestExtractIdempotent(t *testing.T) {
	first, err := Extract(dayAheadDocument, "price.amount", "Period")
	if err != nil {
		t.Fatalf("first Extract failed: %v", err)
	}
	second, err := Extract(dayAheadDocument, "price.amount", "Period")
	if err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated extraction differs:\n%v\n%v", first, second)
	}
}

func TestExtractColumnLengthInvariant(t *testing.T) {
	rows, err := Extract(dayAheadDocument, "price.amount", "Period")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for _, resolution := range rows.Resolutions() {
		nts := len(rows[TimestampKey(resolution)])
		nval := len(rows[ValueKey(resolution)])
		if nts != nval {
			t.Errorf("resolution %s: %d timestamps vs %d values", resolution, nts, nval)
		}
	}
}

func TestExtractMissingPositionSkipped(t *testing.T) {
	doc := `<doc>
  <Period>
    <start>2023-12-31T23:00Z</start>
    <resolution>PT60M</resolution>
    <Point>
      <price.amount>104.98</price.amount>
    </Point>
    <Point>
      <position>2</position>
      <price.amount>105.98</price.amount>
    </Point>
  </Period>
</doc>`
	rows, err := Extract(doc, "price.amount", "Period")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	values := rows.Values("PT60M")
	if len(values) != 1 || values[0] != 105.98 {
		t.Errorf("values = %v, want [105.98]", values)
	}
}

func TestExtractInvalidPosition(t *testing.T) {
	doc := `<doc>
  <Period>
    <start>2023-12-31T23:00Z</start>
    <resolution>PT60M</resolution>
    <Point>
      <position>abc</position>
      <price.amount>104.98</price.amount>
    </Point>
  </Period>
</doc>`
	_, err := Extract(doc, "price.amount", "Period")
	if !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("err = %v, want ErrInvalidPosition", err)
	}
}

func TestExtractInvalidValue(t *testing.T) {
	doc := `<doc>
  <Period>
    <start>2023-12-31T23:00Z</start>
    <resolution>PT60M</resolution>
    <Point>
      <position>1</position>
      <price.amount>n/a</price.amount>
    </Point>
  </Period>
</doc>`
	_, err := Extract(doc, "price.amount", "Period")
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("err = %v, want ErrInvalidValue", err)
	}
}

func TestExtractUnknownResolutionAborts(t *testing.T) {
	doc := `<doc>
  <Period>
    <start>2023-12-31T23:00Z</start>
    <resolution>PT60M</resolution>
    <Point>
      <position>1</position>
      <price.amount>104.98</price.amount>
    </Point>
  </Period>
  <Period>
    <start>2024-01-01T23:00Z</start>
    <resolution>PT45M</resolution>
    <Point>
      <position>1</position>
      <price.amount>99.0</price.amount>
    </Point>
  </Period>
</doc>`
	rows, err := Extract(doc, "price.amount", "Period")
	if !errors.Is(err, ErrUnknownResolution) {
		t.Fatalf("err = %v, want ErrUnknownResolution", err)
	}
	if rows != nil {
		t.Errorf("expected no partial output, got %v", rows)
	}
}

func TestExtractTwoPeriodsDistinctResolutions(t *testing.T) {
	doc := `<doc>
  <Period>
    <start>2023-12-31T23:00Z</start>
    <resolution>PT60M</resolution>
    <Point>
      <position>1</position>
      <quantity>10</quantity>
    </Point>
  </Period>
  <Period>
    <start>2024-01-01T23:00Z</start>
    <resolution>PT15M</resolution>
    <Point>
      <position>1</position>
      <quantity>20</quantity>
    </Point>
    <Point>
      <position>3</position>
      <quantity>30</quantity>
    </Point>
  </Period>
</doc>`
	rows, err := Extract(doc, "quantity", "Period")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if got := rows.Resolutions(); !reflect.DeepEqual(got, []string{"PT15M", "PT60M"}) {
		t.Fatalf("resolutions = %v, want [PT15M PT60M]", got)
	}
	if values := rows.Values("PT60M"); !reflect.DeepEqual(values, []float64{10}) {
		t.Errorf("PT60M values = %v, want [10]", values)
	}
	if values := rows.Values("PT15M"); !reflect.DeepEqual(values, []float64{20, 30}) {
		t.Errorf("PT15M values = %v, want [20 30]", values)
	}

	quarter := rows.Timestamps("PT15M")
	wantThird := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	if !quarter[1].Equal(wantThird) {
		t.Errorf("PT15M position 3 timestamp = %v, want %v", quarter[1], wantThird)
	}
}

func TestExtractPeriodResetDiscardsPartialState(t *testing.T) {
	// The second period never declares a resolution; opening it must clear the
	// first period's, so its point is dropped rather than inheriting PT60M.
	doc := `<doc>
  <Period>
    <start>2023-12-31T23:00Z</start>
    <resolution>PT60M</resolution>
    <Point>
      <position>1</position>
      <quantity>10</quantity>
    </Point>
  </Period>
  <Period>
    <start>2024-01-01T23:00Z</start>
    <Point>
      <position>1</position>
      <quantity>20</quantity>
    </Point>
  </Period>
</doc>`
	rows, err := Extract(doc, "quantity", "Period")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if values := rows.Values("PT60M"); !reflect.DeepEqual(values, []float64{10}) {
		t.Errorf("PT60M values = %v, want [10]", values)
	}
}

func TestExtractOffsetStart(t *testing.T) {
	doc := `<doc>
  <Period>
    <start>2023-06-30T22:00+02:00</start>
    <resolution>PT60M</resolution>
    <Point>
      <position>2</position>
      <quantity>5</quantity>
    </Point>
  </Period>
</doc>`
	rows, err := Extract(doc, "quantity", "Period")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	timestamps := rows.Timestamps("PT60M")
	want := time.Date(2023, 6, 30, 21, 0, 0, 0, time.UTC)
	if len(timestamps) != 1 || !timestamps[0].Equal(want) {
		t.Errorf("timestamps = %v, want [%v]", timestamps, want)
	}
}

func TestExtractMalformedXML(t *testing.T) {
	_, err := Extract("<doc><Period>", "quantity", "Period")
	if err == nil {
		t.Error("expected error for malformed XML")
	}
}

func TestExtractStartWithSecondsRejected(t *testing.T) {
	doc := `<doc>
  <Period>
    <start>2023-12-31T23:00:00Z</start>
    <resolution>PT60M</resolution>
    <Point>
      <position>1</position>
      <quantity>5</quantity>
    </Point>
  </Period>
</doc>`
	_, err := Extract(doc, "quantity", "Period")
	if !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("err = %v, want ErrInvalidTimestamp", err)
	}
}

func TestNormalizeStart(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2023-12-31T23:00Z", want: "2023-12-31T23:00:00Z"},
		{in: "2023-06-30T22:00+02:00", want: "2023-06-30T22:00:00+02:00"},
		{in: "2023-06-30T22:00-05:00", want: "2023-06-30T22:00:00-05:00"},
		{in: "2023-12-31T23:00:00Z", wantErr: true},
		{in: "2023-12-31", wantErr: true},
	}
	for _, tc := range cases {
		got, err := normalizeStart(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("normalizeStart(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("normalizeStart(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("normalizeStart(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
