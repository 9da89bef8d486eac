package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCcittSingle(t *testing.T) {
	crc := CRC16(0)
	crc.Single(10)
	assert.EqualValues(t, 0xA14A, crc)
}

func TestBlockMatchesRepeatedSingle(t *testing.T) {
	data := []byte("hello")

	var viaBlock CRC16
	viaBlock.Block(data)

	var viaSingle CRC16
	for _, b := range data {
		viaSingle.Single(b)
	}

	assert.Equal(t, viaSingle, viaBlock)
}
