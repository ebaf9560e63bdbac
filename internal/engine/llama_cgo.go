//go:build llama

package engine

// Link flags for the llama build. libllama.so and libggml*.so are expected in
// ./bin at link time and next to the poemd binary at run time ($ORIGIN).
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
