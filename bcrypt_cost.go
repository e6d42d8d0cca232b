//go:build !race

package insurance

func passwordHashCost() int {
	return 12
}
