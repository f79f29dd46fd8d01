// Package converter drives a single image to checkpoint conversion.
//
// A Converter looks for the template checkpoint and decodes the source image
// at the same time, merges them with checkpoint.FromRaster and saves the
// result as <stub>.inp (or <stub>.inp.gz). When the template file does not
// exist the checkpoint is built from the image and default parameters alone.
//
// The filesystem is reached through small interfaces so tests can substitute
// in-memory fakes:
//
//	res, err := converter.New().Run(ctx, converter.DefaultRequest())
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.CheckPoint)
//	fmt.Println("saved:", res.Path)
package converter
