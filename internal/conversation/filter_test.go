package conversation

import "testing"

func TestExtractFilterClause(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		want   string
		wantOK bool
	}{
		{
			name:   "order by terminates",
			query:  "SELECT * FROM tm_awards WHERE state_code = 'CA' ORDER BY date_signed",
			want:   "state_code = 'CA'",
			wantOK: true,
		},
		{
			name:   "group by terminates",
			query:  "SELECT state_code, COUNT(*) FROM tm_awards WHERE naics = '541511' GROUP BY state_code",
			want:   "naics = '541511'",
			wantOK: true,
		},
		{
			name:   "limit terminates",
			query:  "SELECT * FROM tm_awards WHERE awarding_agency_name ILIKE '%army%' LIMIT 10",
			want:   "awarding_agency_name ILIKE '%army%'",
			wantOK: true,
		},
		{
			name:   "lowercase keywords",
			query:  "select * from tm_awards where active_task_order <> 0 order by end_date",
			want:   "active_task_order <> 0",
			wantOK: true,
		},
		{
			name:   "spans lines",
			query:  "SELECT *\nFROM tm_awards\nWHERE state_code = 'CA'\n  AND total_obligation > 1000\nORDER BY date_signed",
			want:   "state_code = 'CA'\n  AND total_obligation > 1000",
			wantOK: true,
		},
		{
			name:   "runs to end of query",
			query:  "SELECT COUNT(*) FROM tm_awards WHERE state_code = 'TX';",
			want:   "state_code = 'TX';",
			wantOK: true,
		},
		{
			name:   "no where",
			query:  "SELECT COUNT(*) FROM tm_awards",
			wantOK: false,
		},
		{
			name:   "empty body",
			query:  "SELECT * FROM tm_awards WHERE ORDER BY date_signed",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractFilterClause(tt.query)
			if ok != tt.wantOK {
				t.Fatalf("ExtractFilterClause() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Fatalf("ExtractFilterClause() = %q, want %q", got, tt.want)
			}
		})
	}
}
