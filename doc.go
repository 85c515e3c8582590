/*
go-opencva benchmarks OpenCV image processing operations running on the CPU
against the same operations offloaded to the OpenCV Accelerator (OCA) found on
Renesas RZ/V series SoCs, where OpenCV calls are transparently dispatched to
the DRP function units when the matching unit is enabled.

The root package provides the image buffers passed between the benchmark
stages, the accelerator state and driver used to toggle function units, the
image codecs and CPU pinning.  Colour conversion into the accelerator's native
YUV layouts lives in the preprocess subpackage and the operation registry and
harness live in the bench subpackage.

The hardware driver is only compiled with the opencva build tag and needs the
accelerator enabled OpenCV from the RZ/V AI SDK.  On machines without the
accelerator the harness runs with a NopDriver, so both modes execute on the
CPU.  Labelled boxes for the template matching output are drawn by the render
subpackage.

See example/ocabench for a command line program that runs the full catalogue.
*/
package opencva
