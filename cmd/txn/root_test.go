package txn

import (
	"testing"

	"github.com/ValentinKolb/dMap/lib/partition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOp(t *testing.T) {
	testCases := []struct {
		in      string
		want    op
		wantErr bool
	}{
		{in: "put:k=v", want: op{kind: partition.KindPut, key: []byte("k"), value: []byte("v")}},
		{in: "put:k=", want: op{kind: partition.KindPut, key: []byte("k"), value: []byte("")}},
		{in: "update:k=a=b", want: op{kind: partition.KindUpdate, key: []byte("k"), value: []byte("a=b")}},
		{in: "remove:k", want: op{kind: partition.KindRemove, key: []byte("k")}},
		{in: "PUT:k=v", want: op{kind: partition.KindPut, key: []byte("k"), value: []byte("v")}},
		{in: "put:k", wantErr: true},
		{in: "put:=v", wantErr: true},
		{in: "remove:", wantErr: true},
		{in: "get:k", wantErr: true},
		{in: "k=v", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseOp(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
