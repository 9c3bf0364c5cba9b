// Package watchfolder tracks files appearing in the recording directory and
// promotes them to the processing queue once they have verifiably stopped
// growing. It combines inotify events with periodic polling so neither a
// missed event nor a quiet file stalls the pipeline.
package watchfolder
