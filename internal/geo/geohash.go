package geo

// DefaultGeohashPrecision gives roughly 0.6 km cells, coarse enough to log
// query locations without pinpointing a venue.
const DefaultGeohashPrecision = 6

// base32 is the geohash alphabet (standard base32 minus a, i, l, o).
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the geohash of the coordinate pair at the given precision.
// Precision below 1 falls back to DefaultGeohashPrecision.
func Encode(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = DefaultGeohashPrecision
	}

	latMin, latMax := -90.0, 90.0
	lngMin, lngMax := -180.0, 180.0

	// Bits alternate between longitude and latitude halvings, packed five
	// at a time into base32 characters.
	out := make([]byte, 0, precision)
	var ch uint
	bit := 0
	useLng := true

	for len(out) < precision {
		if useLng {
			if mid := (lngMin + lngMax) / 2; lng > mid {
				ch |= 1 << (4 - bit)
				lngMin = mid
			} else {
				lngMax = mid
			}
		} else {
			if mid := (latMin + latMax) / 2; lat > mid {
				ch |= 1 << (4 - bit)
				latMin = mid
			} else {
				latMax = mid
			}
		}
		useLng = !useLng

		if bit++; bit == 5 {
			out = append(out, base32[ch])
			bit, ch = 0, 0
		}
	}

	return string(out)
}
