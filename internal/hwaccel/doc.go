// Package hwaccel discovers which hardware video encoders the local
// ffmpeg build can actually use. Discovery is three-gated per backend:
// a platform signal (driver tool or device node), the encoder appearing
// in `ffmpeg -encoders`, and a short synthetic trial encode. Only
// encoders that pass all three gates are reported; everything else
// falls back to software.
package hwaccel
