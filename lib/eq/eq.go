/*package eq is a simple package for telling whether two arrays are equal to
one another.*/
package eq

// Ints returns true if two []int arrays are the same and false otherwise.
func Ints(x, y []int) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Int32s returns true if two []int32 arrays are the same and false otherwise.
func Int32s(x, y []int32) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Uint32s returns true if two []uint32 arrays are the same and false
// otherwise.
func Uint32s(x, y []uint32) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Float32s returns true if two []float32 arrays are the same and false
// otherwise.
func Float32s(x, y []float32) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Vec3s returns true if two [][3]float32 arrays are the same and false
// otherwise.
func Vec3s(x, y [][3]float32) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Vec4s returns true if two [][4]float32 arrays are the same and false
// otherwise.
func Vec4s(x, y [][4]float32) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// IVec3s returns true if two [][3]int32 arrays are the same and false
// otherwise.
func IVec3s(x, y [][3]int32) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Float32sEps returns true if the two []float32 arrays are within eps of one
// another and false otherwise.
func Float32sEps(x, y []float32, eps float32) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i]+eps < y[i] || x[i]-eps > y[i] {
			return false
		}
	}
	return true
}

// Vec4sEps returns true if the two [][4]float32 arrays are within eps of one
// another component-wise and false otherwise.
func Vec4sEps(x, y [][4]float32, eps float32) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		for dim := 0; dim < 4; dim++ {
			if x[i][dim]+eps < y[i][dim] || x[i][dim]-eps > y[i][dim] {
				return false
			}
		}
	}
	return true
}
