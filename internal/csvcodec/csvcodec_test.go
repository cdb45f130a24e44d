package csvcodec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadProducts(t *testing.T) {
	input := "\ufeffName,Brand,Stock,Extra\n" +
		"Diet Cola,Fizz,12,x\n" +
		"Widget,,\n" +
		"\"Nuts, salted\",Crunch,3,y,z\n"

	records, err := ReadProducts(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, domain.RawProductRecord{Line: 2, Name: "Diet Cola", Brand: "Fizz", Stock: "12"}, records[0])
	assert.Equal(t, domain.RawProductRecord{Line: 3, Name: "Widget"}, records[1])
	assert.Equal(t, "Nuts, salted", records[2].Name)
	assert.Equal(t, 4, records[2].Line)
}

func TestReadProducts_HeaderOnly(t *testing.T) {
	records, err := ReadProducts(strings.NewReader("name,category\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadProducts_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty file":     "",
		"no name column": "category,brand\nBeverages,Fizz\n",
		"broken quoting": "name,brand\n\"Diet Cola,Fizz\nWidget,Acme\n",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadProducts(strings.NewReader(input))
			assert.ErrorIs(t, err, domain.ErrMalformedInput)
		})
	}
}

func TestWriteProducts_RoundTrip(t *testing.T) {
	products := []domain.Product{
		{ID: 1, Name: "Diet Cola", Category: "Beverages", Brand: "Fizz", Unit: "can", Stock: 12, Image: "cola.png", CreatedAt: time.Now()},
		{ID: 2, Name: "Nuts, salted", Unit: "pcs", Stock: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteProducts(&buf, products))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,category,brand,unit,stock,status,image", lines[0])
	assert.Equal(t, "1,Diet Cola,Beverages,Fizz,can,12,In Stock,cola.png", lines[1])
	assert.Equal(t, `2,"Nuts, salted",,,pcs,0,Out of Stock,`, lines[2])

	records, err := ReadProducts(&buf)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Diet Cola", records[0].Name)
	assert.Equal(t, "12", records[0].Stock)
	assert.Equal(t, "Nuts, salted", records[1].Name)
}
