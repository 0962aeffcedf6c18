package gainmap_test

import (
	"fmt"

	"github.com/vearutop/gainmap"
)

func ExampleEncode() {
	sdr := gainmap.NewImage(2, 1, 3, gainmap.FormatFloat32)
	sdr.Transfer = gainmap.TransferLinear
	copy(sdr.Pix32, []float32{0.5, 0.5, 0.5, 0.25, 0.25, 0.25})

	hdr := gainmap.NewImage(2, 1, 3, gainmap.FormatFloat32)
	hdr.Transfer = gainmap.TransferLinear
	copy(hdr.Pix32, []float32{1, 1, 1, 0.25, 0.25, 0.25})

	res, err := gainmap.Encode(sdr, hdr)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("max boost %.3f\n", res.Meta.MaxContentBoost[0])
	fmt.Println("samples", res.Gainmap.Pix8[0], res.Gainmap.Pix8[4])

	// Output:
	// max boost 1.970
	// samples 255 0
}

func ExampleDecode() {
	sdr := gainmap.NewImage(1, 1, 3, gainmap.FormatFloat32)
	sdr.Transfer = gainmap.TransferLinear
	sdr.Pix32[0], sdr.Pix32[1], sdr.Pix32[2] = 0.5, 0.5, 0.5

	gm := gainmap.NewImage(1, 1, 3, gainmap.FormatUnorm8)
	copy(gm.Pix8, []uint8{255, 255, 255})

	meta := gainmap.NewGainmapMetadata()
	meta.MaxContentBoost = [3]float32{4, 4, 4}
	meta.HDRCapacityMax = 4

	full, err := gainmap.Decode(sdr, gm, meta)
	if err != nil {
		fmt.Println(err)
		return
	}
	half, err := gainmap.Decode(sdr, gm, meta, func(o *gainmap.DecodeOptions) { o.DisplayBoost = 2 })
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("full %.3f, half headroom %.3f\n", full.Pix32[0], half.Pix32[0])

	// Output:
	// full 2.047, half headroom 1.016
}

func ExampleMarshalISO() {
	meta := gainmap.NewGainmapMetadata()
	meta.MaxContentBoost = [3]float32{4, 4, 4}
	meta.HDRCapacityMax = 4

	data, err := gainmap.MarshalISO(meta)
	if err != nil {
		fmt.Println(err)
		return
	}

	back, err := gainmap.UnmarshalISO(data)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(back.MaxContentBoost, back.OffsetSDR[0] == 1.0/64)

	// Output:
	// [4 4 4] true
}
