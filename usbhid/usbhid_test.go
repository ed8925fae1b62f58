package usbhid

import (
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meterDesc() *gousb.DeviceDesc {
	return &gousb.DeviceDesc{
		Configs: map[int]gousb.ConfigDesc{
			1: {
				Number: 1,
				Interfaces: []gousb.InterfaceDesc{
					{
						Number: 0,
						AltSettings: []gousb.InterfaceSetting{
							{Number: 0, Class: gousb.ClassVendorSpec},
						},
					},
					{
						Number: 1,
						AltSettings: []gousb.InterfaceSetting{
							{
								Number: 1,
								Class:  gousb.ClassHID,
								Endpoints: map[gousb.EndpointAddress]gousb.EndpointDesc{
									0x81: {
										Address:   0x81,
										Number:    1,
										Direction: gousb.EndpointDirectionIn,
									},
									0x02: {
										Address:   0x02,
										Number:    2,
										Direction: gousb.EndpointDirectionOut,
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestChooseInterface(t *testing.T) {
	choice, err := chooseInterface(meterDesc())
	require.NoError(t, err)
	assert.Equal(t, interfaceChoice{config: 1, number: 1, alt: 0, in: 1, out: 2}, choice)
}

func TestChooseInterfaceSkipsNonHID(t *testing.T) {
	desc := &gousb.DeviceDesc{
		Configs: map[int]gousb.ConfigDesc{
			1: {
				Number: 1,
				Interfaces: []gousb.InterfaceDesc{
					{
						Number: 0,
						AltSettings: []gousb.InterfaceSetting{
							{Number: 0, Class: gousb.ClassVendorSpec},
						},
					},
				},
			},
		},
	}
	_, err := chooseInterface(desc)
	assert.ErrorIs(t, err, ErrNoHIDInterface)
}

func TestChooseInterfaceNeedsBothEndpoints(t *testing.T) {
	desc := meterDesc()
	cfg := desc.Configs[1]
	hid := &cfg.Interfaces[1].AltSettings[0]
	delete(hid.Endpoints, 0x02)

	_, err := chooseInterface(desc)
	assert.ErrorIs(t, err, ErrNoEndpoints)
}
