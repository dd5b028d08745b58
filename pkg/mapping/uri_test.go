package mapping

import "testing"

func TestParseConfigLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    PointURI
		wantErr bool
	}{
		{
			name: "full uri with port",
			line: "iec61850://10.0.0.1:102/IED1/LD0/CSWI1.Pos.stVal",
			want: PointURI{
				Raw:     "iec61850://10.0.0.1:102/IED1/LD0/CSWI1.Pos.stVal",
				IED:     "10.0.0.1:102",
				IEDName: "IED1",
				MMSPath: "IED1/LD0/CSWI1.Pos.stVal",
			},
		},
		{
			name: "port defaults to 102",
			line: "iec61850://10.0.0.2/IED2/LD0/MMXU1.TotW.mag.f",
			want: PointURI{
				Raw:     "iec61850://10.0.0.2/IED2/LD0/MMXU1.TotW.mag.f",
				IED:     "10.0.0.2:102",
				IEDName: "IED2",
				MMSPath: "IED2/LD0/MMXU1.TotW.mag.f",
			},
		},
		{
			name: "invert suffix is stripped",
			line: "iec61850://10.0.0.1:102/IED1/LD0/CSWI1.Pos.stVal:invers=true",
			want: PointURI{
				Raw:     "iec61850://10.0.0.1:102/IED1/LD0/CSWI1.Pos.stVal",
				IED:     "10.0.0.1:102",
				IEDName: "IED1",
				MMSPath: "IED1/LD0/CSWI1.Pos.stVal",
				Invert:  true,
			},
		},
		{
			name: "custom port is kept",
			line: "iec61850://10.0.0.3:10102/IED3/LD0/GGIO1.Ind1.stVal",
			want: PointURI{
				Raw:     "iec61850://10.0.0.3:10102/IED3/LD0/GGIO1.Ind1.stVal",
				IED:     "10.0.0.3:10102",
				IEDName: "IED3",
				MMSPath: "IED3/LD0/GGIO1.Ind1.stVal",
			},
		},
		{
			name:    "missing host",
			line:    "iec61850:///IED1/LD0/CSWI1.Pos.stVal",
			wantErr: true,
		},
		{
			name:    "missing path",
			line:    "iec61850://10.0.0.1:102",
			wantErr: true,
		},
		{
			name:    "not a uri",
			line:    "IED1/LD0/CSWI1.Pos.stVal",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseConfigLine(%q) succeeded, want error", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseConfigLine(%q) failed: %v", tt.line, err)
			}
			if got != tt.want {
				t.Fatalf("ParseConfigLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}
