// Package safetensors reads and writes GoMLX tensors in the .safetensors format, the format
// HuggingFace uses for model weights.
//
// It is used to store collated batches, so they can be loaded by a training program:
//
//	err := safetensors.Write("batch.safetensors", []safetensors.TensorAndName{
//		{Name: "input_ids", Tensor: inputIDs},
//		{Name: "labels", Tensor: labels},
//	}, map[string]string{"task": "ner"})
//
//	r, err := safetensors.Open("batch.safetensors")
//	defer r.Close()
//	for tensorAndName, err := range r.Iter() {
//		...
//	}
//
// Reading is done through a memory-mapped file.
package safetensors
