package tabular

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpen_CSV(t *testing.T) {
	path := writeFile(t, "olist_customers_dataset.csv",
		"\ufeffcustomer_id , customer_city,customer_state\n"+
			"c1,São Paulo,SP\n"+
			"c2,\"Santa Bárbara d'Oeste\",SP\n"+
			"c3,campinas\n"+
			",,\n")

	tbl, err := Open(path, 0)
	require.NoError(t, err)

	assert.Equal(t, "olist_customers_dataset", tbl.Name)
	assert.Equal(t, []string{"customer_id", "customer_city", "customer_state"}, tbl.Header)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, []string{"c1", "São Paulo", "SP"}, tbl.Rows[0])
	assert.Equal(t, "Santa Bárbara d'Oeste", tbl.Rows[1][1])
	assert.Equal(t, []string{"c3", "campinas", ""}, tbl.Rows[2], "short rows are padded")
}

func TestOpen_Semicolon(t *testing.T) {
	path := writeFile(t, "payments.txt", "order_id;payment_value\no1;12.50\n")

	tbl, err := Open(path, ';')
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "payment_value"}, tbl.Header)
	assert.Equal(t, [][]string{{"o1", "12.50"}}, tbl.Rows)
}

func TestOpen_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"order_id", "customer_id"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"o1", "c1"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"o2"}))

	path := filepath.Join(t.TempDir(), "orders.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := Open(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "orders", tbl.Name)
	assert.Equal(t, []string{"order_id", "customer_id"}, tbl.Header)
	assert.Equal(t, [][]string{{"o1", "c1"}, {"o2", ""}}, tbl.Rows)
}

func TestOpen_Empty(t *testing.T) {
	path := writeFile(t, "empty.csv", "")

	_, err := Open(path, 0)
	require.ErrorIs(t, err, ErrEmpty)
	assert.Contains(t, err.Error(), "empty.csv")
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.csv")
}

func TestParseDelimited(t *testing.T) {
	rows, err := parseDelimited(strings.NewReader("order_id,customer_id\no1,c1\n"), ',')
	require.NoError(t, err)
	tbl, err := build("orders", rows)
	require.NoError(t, err)
	assert.Equal(t, "orders", tbl.Name)
	assert.Len(t, tbl.Rows, 1)
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", ',', false},
		{",", ',', false},
		{";", ';', false},
		{`\t`, '\t', false},
		{"|", '|', false},
		{"ab", 0, true},
		{`"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDelimiter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
