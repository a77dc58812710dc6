package ty6

import (
	"fmt"
	"math/bits"
	"os"
)

// Kernel identifies a line-decode implementation.
type Kernel uint8

const (
	// KernelBase is the portable reference decoder.
	KernelBase Kernel = iota
	// KernelFast is the word-at-a-time decoder. Bit-identical output
	// to KernelBase, selected by default on 64-bit platforms.
	KernelFast
)

// PortableEnv, when set to any non-empty value, forces KernelBase at
// package init. Escape hatch for diagnosing suspected decode issues.
const PortableEnv = "RODHYPIX_PORTABLE"

func (k Kernel) String() string {
	switch k {
	case KernelBase:
		return "base"
	case KernelFast:
		return "fast"
	default:
		return fmt.Sprintf("kernel(%d)", uint8(k))
	}
}

var lineKernels = [...]lineFunc{
	KernelBase: decodeLineBase,
	KernelFast: decodeLineFast,
}

var (
	decodeLine lineFunc
	active     Kernel
)

func init() {
	k := KernelFast
	if bits.UintSize < 64 || os.Getenv(PortableEnv) != "" {
		k = KernelBase
	}
	_ = Select(k)
}

// Select switches the kernel used by Decompress. Not intended to be
// called concurrently with decodes; pick once at startup.
func Select(k Kernel) error {
	if int(k) >= len(lineKernels) {
		return fmt.Errorf("ty6: unknown kernel %d", k)
	}
	decodeLine = lineKernels[k]
	active = k
	return nil
}

// Active reports the kernel Decompress currently uses.
func Active() Kernel {
	return active
}

// Kernels lists the available kernels.
func Kernels() []Kernel {
	return []Kernel{KernelBase, KernelFast}
}
