// Package plot renders error curves and trial fits, as PNG files through
// gonum/plot or as terminal charts through asciigraph. Non-finite samples
// are left out of every chart.
package plot
