package script

// ID names a driver template.
type ID string

const (
	DetectBeats           ID = "detect-beats"
	DetectTempo           ID = "detect-tempo"
	SplitAtBeats          ID = "split-at-beats"
	RemoveImageBackground ID = "remove-image-background"
	RemoveVideoBackground ID = "remove-video-background"
	ChromaKey             ID = "chroma-key"
	SmartReframe          ID = "smart-reframe"
)

// templates maps each ID to a self-contained python driver. Drivers take all
// parameters as positional argv, write status only via the stdout line
// protocol (PROGRESS:/BEATS:/OUTPUT:/TEMPO:/SUCCESS/FAILED), and never read
// interactive input.
var templates = map[ID]string{
	DetectBeats: `import sys
import json
import aubio

def detect_beats(input_file, threshold):
    source = aubio.source(input_file)
    samplerate = source.samplerate

    tempo = aubio.tempo('default', 1024, 512, samplerate)
    tempo.set_threshold(threshold)

    beats = []
    total_frames = source.duration
    read_frames = 0
    current_time = 0.0

    while True:
        samples, read = source()
        if tempo(samples):
            beats.append((current_time, float(tempo.get_confidence())))
        current_time += read / samplerate
        read_frames += read
        if read < source.hop_size:
            break
        if total_frames > 0:
            sys.stdout.write('PROGRESS:%.6f\n' % (read_frames / total_frames))
            sys.stdout.flush()

    return beats

if __name__ == '__main__':
    if len(sys.argv) < 3:
        print('usage: detect_beats.py input_file threshold')
        sys.exit(1)
    beats = detect_beats(sys.argv[1], float(sys.argv[2]))
    print('BEATS:' + json.dumps(beats))
    sys.exit(0)
`,

	DetectTempo: `import sys
import aubio

def detect_tempo(input_file):
    source = aubio.source(input_file)
    samplerate = source.samplerate

    tempo = aubio.tempo('default', 1024, 512, samplerate)

    tempi = []
    total_frames = source.duration
    read_frames = 0

    while True:
        samples, read = source()
        if tempo(samples):
            tempi.append(tempo.get_bpm())
        read_frames += read
        if read < source.hop_size:
            break
        if total_frames > 0:
            sys.stdout.write('PROGRESS:%.6f\n' % (read_frames / total_frames))
            sys.stdout.flush()

    if tempi:
        return sum(tempi) / len(tempi)
    return 0.0

if __name__ == '__main__':
    if len(sys.argv) < 2:
        print('usage: detect_tempo.py input_file')
        sys.exit(1)
    print('TEMPO:%f' % detect_tempo(sys.argv[1]))
    sys.exit(0)
`,

	SplitAtBeats: `import sys
import os
import json
from moviepy.editor import VideoFileClip, AudioFileClip

def split_at_boundaries(input_file, output_dir, boundaries):
    base_name = os.path.basename(input_file)
    name, ext = os.path.splitext(base_name)
    is_video = ext.lower() in ['.mp4', '.mov', '.avi', '.mkv']

    try:
        clip = VideoFileClip(input_file) if is_video else AudioFileClip(input_file)
    except Exception as e:
        print('Error loading file: %s' % e)
        return []

    output_files = []
    total_segments = len(boundaries) - 1

    for i in range(total_segments):
        start_time = boundaries[i]
        end_time = boundaries[i + 1]
        if end_time - start_time < 0.1:
            continue

        segment = clip.subclip(start_time, end_time)
        segment_path = os.path.join(output_dir, '%s_segment_%03d%s' % (name, i, ext))
        try:
            if is_video:
                segment.write_videofile(segment_path, codec='libx264', audio_codec='aac')
            else:
                segment.write_audiofile(segment_path, codec='libmp3lame')
            output_files.append(segment_path)
            print('PROGRESS:%.6f' % ((i + 1) / total_segments))
        except Exception as e:
            print('Error writing segment %d: %s' % (i, e))

    clip.close()
    return output_files

if __name__ == '__main__':
    if len(sys.argv) < 4:
        print('usage: split_at_beats.py input_file output_dir boundaries_json')
        sys.exit(1)
    files = split_at_boundaries(sys.argv[1], sys.argv[2], json.loads(sys.argv[3]))
    print('OUTPUT:' + json.dumps(files))
    sys.exit(0)
`,

	RemoveImageBackground: `import sys
from rembg import remove, new_session
from PIL import Image

def hex_to_rgb(value):
    value = value.lstrip('#')
    return tuple(int(value[i:i+2], 16) for i in (0, 2, 4))

def process(input_file, output_file, alpha, bg_color, model):
    session = new_session(model)
    image = Image.open(input_file)
    print('PROGRESS:0.300000')
    result = remove(image, session=session)
    print('PROGRESS:0.700000')
    if not alpha:
        background = Image.new('RGB', result.size, hex_to_rgb(bg_color))
        background.paste(result, mask=result.split()[3])
        result = background
    result.save(output_file)
    print('PROGRESS:1.000000')
    return True

if __name__ == '__main__':
    if len(sys.argv) < 6:
        print('usage: remove_image_bg.py input output alpha bg_color model')
        sys.exit(1)
    try:
        ok = process(sys.argv[1], sys.argv[2], sys.argv[3].lower() == 'true',
                     sys.argv[4], sys.argv[5])
    except Exception as e:
        print('Error: %s' % e)
        ok = False
    print('SUCCESS' if ok else 'FAILED')
    sys.exit(0 if ok else 1)
`,

	RemoveVideoBackground: `import sys
import cv2
import numpy as np
from rembg import remove, new_session
from PIL import Image

def hex_to_bgr(value):
    value = value.lstrip('#')
    r, g, b = (int(value[i:i+2], 16) for i in (0, 2, 4))
    return (b, g, r)

def process_video(input_file, output_file, alpha, bg_color, model, fps):
    try:
        cap = cv2.VideoCapture(input_file)
        if not cap.isOpened():
            print('Error: could not open video file')
            return False

        width = int(cap.get(cv2.CAP_PROP_FRAME_WIDTH))
        height = int(cap.get(cv2.CAP_PROP_FRAME_HEIGHT))
        src_fps = cap.get(cv2.CAP_PROP_FPS)
        total_frames = int(cap.get(cv2.CAP_PROP_FRAME_COUNT))
        if fps <= 0:
            fps = src_fps

        fourcc = cv2.VideoWriter_fourcc(*'mp4v')
        out = cv2.VideoWriter(output_file, fourcc, fps, (width, height))
        session = new_session(model)
        fill = np.ones((height, width, 3), dtype=np.uint8)
        fill[:] = hex_to_bgr(bg_color)

        frame_count = 0
        while cap.isOpened():
            ret, frame = cap.read()
            if not ret:
                break

            pil_image = Image.fromarray(cv2.cvtColor(frame, cv2.COLOR_BGR2RGB))
            cut = remove(pil_image, session=session)
            rgba = cv2.cvtColor(np.array(cut), cv2.COLOR_RGBA2BGRA)
            alpha_channel = rgba[:, :, 3].astype(np.float32) / 255.0
            alpha_factor = np.dstack((alpha_channel, alpha_channel, alpha_channel))
            if alpha:
                # VideoWriter cannot store alpha; composite over white.
                backdrop = np.ones_like(rgba[:, :, :3], dtype=np.uint8) * 255
            else:
                backdrop = fill
            result = (1 - alpha_factor) * backdrop + alpha_factor * rgba[:, :, :3]
            out.write(result.astype(np.uint8))

            frame_count += 1
            if total_frames > 0:
                sys.stdout.write('PROGRESS:%.6f\n' % (frame_count / total_frames))
                sys.stdout.flush()

        cap.release()
        out.release()
        return True
    except Exception as e:
        print('Error: %s' % e)
        return False

if __name__ == '__main__':
    if len(sys.argv) < 7:
        print('usage: remove_video_bg.py input output alpha bg_color model fps')
        sys.exit(1)
    ok = process_video(sys.argv[1], sys.argv[2], sys.argv[3].lower() == 'true',
                       sys.argv[4], sys.argv[5], float(sys.argv[6]))
    print('SUCCESS' if ok else 'FAILED')
    sys.exit(0 if ok else 1)
`,

	ChromaKey: `import sys
import cv2
import numpy as np

def hex_to_bgr(value):
    value = value.lstrip('#')
    r, g, b = (int(value[i:i+2], 16) for i in (0, 2, 4))
    return np.array([b, g, r], dtype=np.float32)

def key_frame(frame, key, similarity, smoothness, spill):
    diff = np.linalg.norm(frame.astype(np.float32) - key, axis=2) / 441.67
    lo = similarity
    hi = similarity + max(smoothness, 1e-6)
    mask = np.clip((diff - lo) / (hi - lo), 0.0, 1.0)
    if spill > 0:
        dominant = np.argmax(key)
        others = [c for c in range(3) if c != dominant]
        limit = np.maximum(frame[:, :, others[0]], frame[:, :, others[1]]).astype(np.float32)
        channel = frame[:, :, dominant].astype(np.float32)
        frame[:, :, dominant] = (channel * (1 - spill) + np.minimum(channel, limit) * spill).astype(np.uint8)
    return frame, mask

def process(input_file, output_file, key_color, similarity, smoothness, spill):
    try:
        cap = cv2.VideoCapture(input_file)
        if not cap.isOpened():
            print('Error: could not open input file')
            return False

        width = int(cap.get(cv2.CAP_PROP_FRAME_WIDTH))
        height = int(cap.get(cv2.CAP_PROP_FRAME_HEIGHT))
        fps = cap.get(cv2.CAP_PROP_FPS)
        total_frames = int(cap.get(cv2.CAP_PROP_FRAME_COUNT))

        fourcc = cv2.VideoWriter_fourcc(*'mp4v')
        out = cv2.VideoWriter(output_file, fourcc, fps, (width, height))
        key = hex_to_bgr(key_color)
        black = np.zeros((height, width, 3), dtype=np.float32)

        frame_count = 0
        while cap.isOpened():
            ret, frame = cap.read()
            if not ret:
                break

            frame, mask = key_frame(frame, key, similarity, smoothness, spill)
            mask3 = np.dstack((mask, mask, mask))
            result = frame.astype(np.float32) * mask3 + black * (1 - mask3)
            out.write(result.astype(np.uint8))

            frame_count += 1
            if total_frames > 0:
                sys.stdout.write('PROGRESS:%.6f\n' % (frame_count / total_frames))
                sys.stdout.flush()

        cap.release()
        out.release()
        return True
    except Exception as e:
        print('Error: %s' % e)
        return False

if __name__ == '__main__':
    if len(sys.argv) < 7:
        print('usage: chroma_key.py input output key_color similarity smoothness spill')
        sys.exit(1)
    ok = process(sys.argv[1], sys.argv[2], sys.argv[3],
                 float(sys.argv[4]), float(sys.argv[5]), float(sys.argv[6]))
    print('SUCCESS' if ok else 'FAILED')
    sys.exit(0 if ok else 1)
`,

	SmartReframe: `import sys
import cv2
import numpy as np
from moviepy.editor import VideoFileClip

def smart_reframe(input_file, output_file, target_ratio):
    try:
        target_width, target_height = map(int, target_ratio.split(':'))
        target_aspect = target_width / target_height

        cap = cv2.VideoCapture(input_file)
        if not cap.isOpened():
            print('Error: could not open video file')
            return False

        orig_width = int(cap.get(cv2.CAP_PROP_FRAME_WIDTH))
        orig_height = int(cap.get(cv2.CAP_PROP_FRAME_HEIGHT))
        orig_aspect = orig_width / orig_height
        fps = cap.get(cv2.CAP_PROP_FPS)
        total_frames = int(cap.get(cv2.CAP_PROP_FRAME_COUNT))

        if target_aspect > orig_aspect:
            out_width = orig_width
            out_height = int(orig_width / target_aspect)
        else:
            out_height = orig_height
            out_width = int(orig_height * target_aspect)

        face_cascade = cv2.CascadeClassifier(
            cv2.data.haarcascades + 'haarcascade_frontalface_default.xml')

        fourcc = cv2.VideoWriter_fourcc(*'mp4v')
        out = cv2.VideoWriter(output_file, fourcc, fps, (out_width, out_height))

        frame_count = 0
        while cap.isOpened():
            ret, frame = cap.read()
            if not ret:
                break

            gray = cv2.cvtColor(frame, cv2.COLOR_BGR2GRAY)
            faces = face_cascade.detectMultiScale(gray, 1.1, 4)

            if len(faces) > 0:
                centers = [(x + w // 2, y + h // 2) for (x, y, w, h) in faces]
                avg_x = sum(x for x, y in centers) // len(faces)
                avg_y = sum(y for x, y in centers) // len(faces)
            else:
                avg_x = orig_width // 2
                avg_y = orig_height // 2

            if target_aspect > orig_aspect:
                crop_y = max(0, avg_y - out_height // 2)
                crop_y = min(crop_y, orig_height - out_height)
                cropped = frame[crop_y:crop_y + out_height, 0:orig_width]
            else:
                crop_x = max(0, avg_x - out_width // 2)
                crop_x = min(crop_x, orig_width - out_width)
                cropped = frame[0:orig_height, crop_x:crop_x + out_width]

            if cropped.shape[1] != out_width or cropped.shape[0] != out_height:
                cropped = cv2.resize(cropped, (out_width, out_height))

            out.write(cropped)

            frame_count += 1
            if total_frames > 0:
                sys.stdout.write('PROGRESS:%.6f\n' % (frame_count / total_frames))
                sys.stdout.flush()

        cap.release()
        out.release()

        try:
            original_clip = VideoFileClip(input_file)
            reframed_clip = VideoFileClip(output_file).set_audio(original_clip.audio)
            temp_output = output_file + '.temp.mp4'
            reframed_clip.write_videofile(temp_output, codec='libx264')
            import os
            os.replace(temp_output, output_file)
        except Exception as e:
            print('Warning: could not copy audio: %s' % e)

        return True
    except Exception as e:
        print('Error: %s' % e)
        return False

if __name__ == '__main__':
    if len(sys.argv) < 4:
        print('usage: smart_reframe.py input_file output_file target_ratio')
        sys.exit(1)
    ok = smart_reframe(sys.argv[1], sys.argv[2], sys.argv[3])
    print('SUCCESS' if ok else 'FAILED')
    sys.exit(0 if ok else 1)
`,
}
